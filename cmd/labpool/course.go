package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/teams"
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Set up courses, students and VM models",
}

var (
	courseName    string
	courseAcronym string
	courseMin     int
	courseMax     int
	courseVcpu    int
	courseMemory  float64
	courseDisk    float64
	courseInst    int
	courseRunning int
	courseEnabled bool
)

var courseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a course",
	RunE: func(cmd *cobra.Command, args []string) error {
		caps := cfg.DefaultCaps
		flags := cmd.Flags()
		if flags.Changed("vcpu") {
			caps.VcpuMax = courseVcpu
		}
		if flags.Changed("memory") {
			caps.MemoryMax = courseMemory
		}
		if flags.Changed("disk") {
			caps.DiskMax = courseDisk
		}
		if flags.Changed("max-instances") {
			caps.MaxInstances = courseInst
		}
		if flags.Changed("max-running") {
			caps.MaxRunningInstances = courseRunning
		}

		return withManager(cmd, func(mgr teams.Manager) error {
			course, err := mgr.CreateCourse(cmd.Context(), domain.Course{
				Name:       courseName,
				Acronym:    courseAcronym,
				Enabled:    courseEnabled,
				MinMembers: courseMin,
				MaxMembers: courseMax,
				Caps:       caps,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created course %d (%s)\n", course.ID, course.Name)
			return nil
		})
	},
}

var courseEnableCmd = &cobra.Command{
	Use:   "enable COURSE_ID",
	Short: "Open team formation for a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCourseEnabled(cmd, args[0], true)
	},
}

var courseDisableCmd = &cobra.Command{
	Use:   "disable COURSE_ID",
	Short: "Close team formation for a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCourseEnabled(cmd, args[0], false)
	},
}

var courseEnrollCmd = &cobra.Command{
	Use:   "enroll COURSE_ID STUDENT_ID...",
	Short: "Enroll students in a course",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withManager(cmd, func(mgr teams.Manager) error {
			if err := mgr.EnrollStudents(cmd.Context(), courseID, args[1:]...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %d students in course %d\n", len(args)-1, courseID)
			return nil
		})
	},
}

var (
	vmModelName   string
	vmModelConfig string
)

var courseVmModelCmd = &cobra.Command{
	Use:   "vm-model COURSE_ID",
	Short: "Set the VM template of a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withManager(cmd, func(mgr teams.Manager) error {
			model, err := mgr.SetVmModel(cmd.Context(), domain.VmModel{
				CourseID:      courseID,
				Name:          vmModelName,
				Configuration: vmModelConfig,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "course %d uses vm model %d (%s)\n", courseID, model.ID, model.Name)
			return nil
		})
	},
}

var (
	studentFirst string
	studentLast  string
	studentEmail string
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentAddCmd = &cobra.Command{
	Use:   "add STUDENT_ID",
	Short: "Register a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(mgr teams.Manager) error {
			s, err := mgr.AddStudent(cmd.Context(), domain.Student{
				ID:        args[0],
				FirstName: studentFirst,
				LastName:  studentLast,
				Email:     studentEmail,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added student %s\n", s.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(courseCmd, studentCmd)
	courseCmd.AddCommand(courseCreateCmd, courseEnableCmd, courseDisableCmd, courseEnrollCmd, courseVmModelCmd)
	studentCmd.AddCommand(studentAddCmd)

	f := courseCreateCmd.Flags()
	f.StringVar(&courseName, "name", "", "course name")
	f.StringVar(&courseAcronym, "acronym", "", "course acronym")
	f.IntVar(&courseMin, "min", 1, "minimum team size")
	f.IntVar(&courseMax, "max", 4, "maximum team size")
	f.IntVar(&courseVcpu, "vcpu", 0, "team vCPU cap (default from LABPOOL_DEFAULT_VCPU)")
	f.Float64Var(&courseMemory, "memory", 0, "team memory cap in GB")
	f.Float64Var(&courseDisk, "disk", 0, "team disk cap in GB")
	f.IntVar(&courseInst, "max-instances", 0, "team VM count cap")
	f.IntVar(&courseRunning, "max-running", 0, "team running VM cap")
	f.BoolVar(&courseEnabled, "enabled", true, "open team formation immediately")
	_ = courseCreateCmd.MarkFlagRequired("name")
	_ = courseCreateCmd.MarkFlagRequired("acronym")

	courseVmModelCmd.Flags().StringVar(&vmModelName, "name", "", "template name")
	courseVmModelCmd.Flags().StringVar(&vmModelConfig, "config", "", "template configuration")
	_ = courseVmModelCmd.MarkFlagRequired("name")

	studentAddCmd.Flags().StringVar(&studentFirst, "first-name", "", "first name")
	studentAddCmd.Flags().StringVar(&studentLast, "last-name", "", "last name")
	studentAddCmd.Flags().StringVar(&studentEmail, "email", "", "email address")
}

func withManager(cmd *cobra.Command, fn func(teams.Manager) error) error {
	ds, err := cfg.InitializeDatabase()
	if err != nil {
		return err
	}
	defer ds.Close()
	return fn(teams.NewManager(ds, nil))
}

func setCourseEnabled(cmd *cobra.Command, arg string, enabled bool) error {
	courseID, err := parseID(arg)
	if err != nil {
		return err
	}
	return withManager(cmd, func(mgr teams.Manager) error {
		course, err := mgr.SetCourseEnabled(cmd.Context(), courseID, enabled)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "course %d enabled=%t\n", course.ID, course.Enabled)
		return nil
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
